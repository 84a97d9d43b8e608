package shared

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var (
	ErrKeyExtension = errors.New("please provide key files in .pem format")
	ErrKeyLabel     = errors.New("rsa key malformed")
	ErrKeyMissing   = errors.New("need exactly one public and one private key")
)

// KeyMaterial holds the raw PEM encodings of the server keypair. The public
// half is served verbatim on GET /pubkey.
type KeyMaterial struct {
	PublicPEM  []byte
	PrivatePEM []byte
}

// LoadKeyMaterial reads two PEM files and sorts them into public and
// private by their PEM block label, so the paths may be given in either
// order.
func LoadKeyMaterial(pathA, pathB string) (*KeyMaterial, error) {
	km := &KeyMaterial{}
	for _, path := range []string{pathA, pathB} {
		if filepath.Ext(path) != ".pem" {
			return nil, errors.Wrapf(ErrKeyExtension, "%q", path)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "could not open %q", path)
		}
		switch keyKind(b) {
		case "public":
			km.PublicPEM = b
		case "private":
			km.PrivatePEM = b
		default:
			return nil, errors.Wrapf(ErrKeyLabel, "%q", path)
		}
	}
	if km.PublicPEM == nil || km.PrivatePEM == nil {
		return nil, ErrKeyMissing
	}
	return km, nil
}

func keyKind(b []byte) string {
	block, _ := pem.Decode(bytes.TrimSpace(b))
	if block == nil {
		return ""
	}
	switch block.Type {
	case "PUBLIC KEY", "RSA PUBLIC KEY":
		return "public"
	case "RSA PRIVATE KEY", "PRIVATE KEY":
		return "private"
	}
	return ""
}

// GenerateKeyMaterial creates a fresh RSA keypair in the same PEM layout
// LoadKeyMaterial accepts (PKIX public key, PKCS#1 private key).
func GenerateKeyMaterial(bits int) (*KeyMaterial, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, errors.Wrap(err, "generate rsa key")
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "marshal public key")
	}
	return &KeyMaterial{
		PublicPEM:  pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}),
		PrivatePEM: pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}),
	}, nil
}

// WriteKeyMaterial stores km as pub_key.pem and priv_key.pem under dir and
// returns both paths.
func WriteKeyMaterial(dir string, km *KeyMaterial) (pubPath, privPath string, err error) {
	pubPath = filepath.Join(dir, "pub_key.pem")
	privPath = filepath.Join(dir, "priv_key.pem")
	if err := os.WriteFile(pubPath, km.PublicPEM, 0644); err != nil {
		return "", "", errors.Wrap(err, "write public key")
	}
	if err := os.WriteFile(privPath, km.PrivatePEM, 0600); err != nil {
		return "", "", errors.Wrap(err, "write private key")
	}
	return pubPath, privPath, nil
}
