package service

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// Cipher encrypts the session snapshots before they reach the storage. The AES-256 key is derived from Secret.
type Cipher struct {
	Secret  string
	Storage sessionStorage

	aead cipher.AEAD
}

// Init the internal state.
func (c *Cipher) Init() error {
	if c.Secret == "" {
		return errors.New("internal/service/Cipher.Secret can't be empty")
	}
	if c.Storage == nil {
		return errors.New("internal/service/Cipher.Storage can't be nil")
	}

	key := sha256.Sum256([]byte(c.Secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return fmt.Errorf("fail to create a cipher: %w", err)
	}
	c.aead, err = cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("fail to create a gcm cipher: %w", err)
	}
	return nil
}

// Get decrypts the stored snapshot. A missing key gives a nil reader.
func (c Cipher) Get(ctx context.Context, key string) (_ io.ReadCloser, err error) {
	span, ctx := startSpan(ctx, "Cipher.Get")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	reader, err := c.Storage.Get(ctx, key)
	if err != nil || reader == nil {
		return nil, err
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("fail to read payload: %w", err)
	}
	nonceSize := c.aead.NonceSize()
	if len(payload) < nonceSize {
		return nil, errors.New("payload smaller than nonce size")
	}

	// The key is the additional authenticated data.
	result, err := c.aead.Open(nil, payload[:nonceSize], payload[nonceSize:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("fail to decrypt payload: %w", err)
	}
	return io.NopCloser(bytes.NewReader(result)), nil
}

// Put encrypts the snapshot.
func (c Cipher) Put(ctx context.Context, key string, reader io.Reader) (err error) {
	span, ctx := startSpan(ctx, "Cipher.Put")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("fail to read payload: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("fail to initialize the nonce: %w", err)
	}
	result := c.aead.Seal(nonce, nonce, payload, []byte(key))
	if err := c.Storage.Put(ctx, key, bytes.NewReader(result)); err != nil {
		return fmt.Errorf("fail to put object at the storage: %w", err)
	}
	return nil
}
