// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/drydock-dev/drydock/lib/secret"
)

// Keypair is an age x25519 identity and its recipient. The private key
// lives in a secret.Buffer; the public key is safe to publish.
type Keypair struct {
	PrivateKey *secret.Buffer
	PublicKey  string
}

// Close releases the private key memory. Idempotent.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// GenerateKeypair creates a new x25519 identity. The caller must Close
// the returned Keypair.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age identity: %w", err)
	}
	privateKey, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("protecting private key: %w", err)
	}
	return &Keypair{PrivateKey: privateKey, PublicKey: identity.Recipient().String()}, nil
}

// ParseRecipients parses age1... public keys.
func ParseRecipients(keys []string) ([]age.Recipient, error) {
	if len(keys) == 0 {
		return nil, errors.New("at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(keys))
	for _, key := range keys {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("parsing recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return recipients, nil
}

// Encrypt seals plaintext to recipientKeys and returns armored
// ciphertext.
func Encrypt(plaintext []byte, recipientKeys []string) ([]byte, error) {
	recipients, err := ParseRecipients(recipientKeys)
	if err != nil {
		return nil, err
	}

	var output bytes.Buffer
	armored := armor.NewWriter(&output)
	writer, err := age.Encrypt(armored, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("encrypting: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}
	if err := armored.Close(); err != nil {
		return nil, fmt.Errorf("finalizing armor: %w", err)
	}
	return output.Bytes(), nil
}

// LoadIdentities reads an age identity file: one AGE-SECRET-KEY-1...
// per line, with # comments.
func LoadIdentities(path string) ([]age.Identity, error) {
	buffer, err := secret.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}
	defer buffer.Close()
	return ParseIdentities(buffer)
}

// ParseIdentities parses identities held in a secret.Buffer. The buffer
// is borrowed, not closed.
func ParseIdentities(buffer *secret.Buffer) ([]age.Identity, error) {
	identities, err := age.ParseIdentities(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("parsing identities: %w", err)
	}
	return identities, nil
}

// Decrypt opens ciphertext, armored or binary, with identities and
// returns the plaintext in a secret.Buffer the caller must Close.
func Decrypt(ciphertext []byte, identities ...age.Identity) (*secret.Buffer, error) {
	var source io.Reader = bytes.NewReader(ciphertext)
	if bytes.HasPrefix(bytes.TrimSpace(ciphertext), []byte(armor.Header)) {
		source = armor.NewReader(bufio.NewReader(bytes.NewReader(bytes.TrimSpace(ciphertext))))
	}

	reader, err := age.Decrypt(source, identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("reading plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, errors.New("decrypted file is empty")
	}
	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("protecting plaintext: %w", err)
	}
	return buffer, nil
}

// DecryptFile decrypts the file at path with the identities in
// identityPath.
func DecryptFile(path, identityPath string) (*secret.Buffer, error) {
	identities, err := LoadIdentities(identityPath)
	if err != nil {
		return nil, err
	}
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sealed file: %w", err)
	}
	return Decrypt(ciphertext, identities...)
}
