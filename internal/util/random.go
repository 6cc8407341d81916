package util

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"
)

// 授权码字符集，大写字母加数字，便于人工输入
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	codeLength = 20
	groupSize  = 5
)

// GenerateLicenseCode 生成授权码，格式 XXXXX-XXXXX-XXXXX-XXXXX
// 必须使用加密随机源，伪随机会让授权码可预测
func GenerateLicenseCode() (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		if i > 0 && i%groupSize == 0 {
			sb.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// GenerateAccessToken 生成访问令牌，32字节随机数的十六进制表示
// 令牌等同于一次通过的授权验证，必须不可猜测
func GenerateAccessToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
