package rag

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/knowbase/backend/internal/infrastructure/config"
)

// keyFileName 密钥文件名，保存在数据目录下，仅所有者可读写
const keyFileName = ".kb_key"

// EncryptionKey API 密钥落盘加密器（AES-256-GCM）
// 密钥首次使用时生成并持久化；解密失败的输入按未加密的历史数据原样返回。
type EncryptionKey struct {
	key []byte
}

// NewEncryptionKey 加载或生成加密密钥
func NewEncryptionKey() (*EncryptionKey, error) {
	keyPath := filepath.Join(config.GetDataDir(), keyFileName)

	if data, err := os.ReadFile(keyPath); err == nil {
		return &EncryptionKey{key: data}, nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(keyPath, key, 0600); err != nil {
		return nil, fmt.Errorf("failed to save encryption key: %w", err)
	}

	return &EncryptionKey{key: key}, nil
}

// gcm 构建 AES-GCM 实例
func (ek *EncryptionKey) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(ek.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Encrypt 加密文本并返回 base64 编码结果
func (ek *EncryptionKey) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aead, err := ek.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt 解密 base64 编码的密文
// 非 base64、长度不足或认证失败的输入视为未加密数据，原样返回。
func (ek *EncryptionKey) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return ciphertext, nil
	}

	aead, err := ek.gcm()
	if err != nil {
		return "", err
	}
	if len(data) < aead.NonceSize() {
		return ciphertext, nil
	}

	nonce, sealed := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return ciphertext, nil
	}
	return string(plaintext), nil
}
