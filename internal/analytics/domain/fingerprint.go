package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint 对操作名与规范化参数生成确定性缓存键
// encoding/json 序列化 map 时按键排序，无序输入（资产映射）天然与
// 传入顺序无关；切片保持顺序，收益率序列等有序输入仍然顺序敏感
func Fingerprint(op string, params any) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("fingerprint params marshal: %w", err)
	}
	sum := sha256.Sum256(raw)
	return op + ":" + hex.EncodeToString(sum[:]), nil
}
