package crypto

import (
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
)

// Sign computes the RSA PKCS#1 v1.5 / SHA-256 signature over data. Callers
// pass the canonical manifest bytes; the signature is only meaningful if
// every verifier reconstructs byte-identical input.
func Sign(data []byte, priv *rsa.PrivateKey) ([]byte, error) {
	h := sha256.Sum256(data)
	return rsa.SignPKCS1v15(rand.Reader, priv, stdcrypto.SHA256, h[:])
}

// Verify checks sig against data with the given public key. Any failure
// (wrong key, tampered bytes, malformed signature) is reported as the same
// verification error; which byte differed is never disclosed.
func Verify(data, sig []byte, pub *rsa.PublicKey) error {
	h := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(pub, stdcrypto.SHA256, h[:], sig)
}
