/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"os"
	"time"
)

// selfSignedCertBits is deliberately smaller than cryptocore's RSA-4096
// identity key: this certificate only stands up the TLS transport, never
// authenticates anything (spec §1, §9) — the handshake's security comes
// from cryptocore's key pair, not this one.
const selfSignedCertBits = 2048

const selfSignedValidity = 24 * time.Hour

// selfSignedCert generates an ephemeral RSA-2048 certificate, valid for 24
// hours, with subject CN set to the local hostname. Certificate generation
// is deliberately kept out of the transport package's contract (spec §1);
// this is the one caller the binary needs to produce something for Start
// to listen with.
func selfSignedCert() (tls.Certificate, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "la-vak"
	}

	priv, err := rsa.GenerateKey(rand.Reader, selfSignedCertBits)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("certutil: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("certutil: generate serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: host, Organization: []string{"la-vak"}},
		NotBefore:    now.Add(-time.Minute),
		NotAfter:     now.Add(selfSignedValidity),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{host},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("certutil: create certificate: %w", err)
	}

	cert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}
	return cert, nil
}
