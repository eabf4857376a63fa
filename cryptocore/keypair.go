/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package cryptocore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"
)

const rsaKeyBits = 4096

// processKeyPair is the lazily initialized, process-lifetime RSA identity.
// Spec: "First call generates an RSA-4096 key pair; all subsequent calls
// within the process return the same pair." There is no persistent
// identity key — a fresh process gets a fresh key pair.
var processKeyPair struct {
	once       sync.Once
	publicPEM  []byte
	privatePEM []byte
	private    *rsa.PrivateKey
	err        error
}

func initKeyPair() {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		processKeyPair.err = fmt.Errorf("cryptocore: generate RSA key pair: %w", err)
		return
	}

	privDER := x509.MarshalPKCS1PrivateKey(priv)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privDER})

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		processKeyPair.err = fmt.Errorf("cryptocore: marshal RSA public key: %w", err)
		return
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	processKeyPair.private = priv
	processKeyPair.privatePEM = privPEM
	processKeyPair.publicPEM = pubPEM
}

// GetKeyPair returns (publicKeyPEM, privateKeyPEM) for this process,
// generating the RSA-4096 pair on first call and caching it thereafter.
func GetKeyPair() (publicKeyPEM, privateKeyPEM []byte, err error) {
	processKeyPair.once.Do(initKeyPair)
	if processKeyPair.err != nil {
		return nil, nil, processKeyPair.err
	}
	return processKeyPair.publicPEM, processKeyPair.privatePEM, nil
}

// privateKey returns the process's cached RSA private key, generating the
// pair if this is the first call in the process.
func privateKey() (*rsa.PrivateKey, error) {
	processKeyPair.once.Do(initKeyPair)
	if processKeyPair.err != nil {
		return nil, processKeyPair.err
	}
	return processKeyPair.private, nil
}

func parsePublicKeyPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("cryptocore: invalid PEM block")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptocore: parse public key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("cryptocore: public key is not RSA")
	}
	return rsaKey, nil
}
