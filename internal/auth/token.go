package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"pizzaservice/internal/shared"
)

var (
	ErrNoneAlgorithm       = errors.New("token uses the none algorithm")
	ErrAlgorithmNotAllowed = errors.New("token algorithm not allowed")
	ErrMalformedHeader     = errors.New("malformed token header")
)

// AllowedAlgorithms is the fixed set of header algorithms Verify accepts.
var AllowedAlgorithms = []string{
	jwt.SigningMethodRS256.Alg(),
	jwt.SigningMethodRS384.Alg(),
	jwt.SigningMethodRS512.Alg(),
}

// Authority mints and checks order tokens with one RSA keypair.
type Authority struct {
	issuer string
	pub    *rsa.PublicKey
	priv   *rsa.PrivateKey
	pubPEM []byte
}

func NewAuthority(issuer string, km *shared.KeyMaterial) (*Authority, error) {
	pub, err := jwt.ParseRSAPublicKeyFromPEM(km.PublicPEM)
	if err != nil {
		return nil, errors.Wrap(err, "rsa pub key malformed")
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(km.PrivatePEM)
	if err != nil {
		return nil, errors.Wrap(err, "rsa priv key malformed")
	}
	return &Authority{issuer: issuer, pub: pub, priv: priv, pubPEM: km.PublicPEM}, nil
}

func (a *Authority) Issuer() string { return a.issuer }

// PublicKeyPEM returns the public key exactly as it was read from disk.
func (a *Authority) PublicKeyPEM() []byte { return a.pubPEM }

// Issue returns a signed token scoped to orderID.
func (a *Authority) Issue(orderID int64) (string, error) {
	claims := jwt.MapClaims{
		"iss": a.issuer,
		"aud": strconv.FormatInt(orderID, 10),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.priv)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return token, nil
}

// Verify checks that token was signed by this authority for orderID. Any
// error means the token does not authorize the order; the error value only
// exists for logging.
func (a *Authority) Verify(token string, orderID int64) error {
	alg, err := headerAlgorithm(token)
	if err != nil {
		return err
	}
	if strings.EqualFold(alg, "none") {
		return ErrNoneAlgorithm
	}
	if !slices.Contains(AllowedAlgorithms, alg) {
		return errors.Wrapf(ErrAlgorithmNotAllowed, "%q", alg)
	}

	_, err = jwt.Parse(token,
		func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != alg {
				return nil, errors.Wrapf(ErrAlgorithmNotAllowed, "%q", t.Method.Alg())
			}
			return a.pub, nil
		},
		jwt.WithValidMethods([]string{alg}),
		jwt.WithIssuer(a.issuer),
		jwt.WithAudience(strconv.FormatInt(orderID, 10)),
	)
	return err
}

// SelfTest performs one issue/verify round trip, proving the two keys
// belong together.
func (a *Authority) SelfTest() error {
	token, err := a.Issue(0)
	if err != nil {
		return err
	}
	return errors.Wrap(a.Verify(token, 0), "keypair round trip failed")
}

// headerAlgorithm decodes only the first segment of token.
func headerAlgorithm(token string) (string, error) {
	head, _, ok := strings.Cut(token, ".")
	if !ok {
		return "", ErrMalformedHeader
	}
	raw, err := base64.RawURLEncoding.DecodeString(head)
	if err != nil {
		return "", errors.Wrap(ErrMalformedHeader, err.Error())
	}
	var hdr struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return "", errors.Wrap(ErrMalformedHeader, err.Error())
	}
	if hdr.Alg == "" {
		return "", errors.Wrap(ErrMalformedHeader, "missing alg")
	}
	return hdr.Alg, nil
}

// UnverifiedAudience reads the aud claim without checking the signature.
// Clients use it to learn which order a token they hold refers to.
func UnverifiedAudience(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", errors.Wrap(err, "decode token")
	}
	aud, err := claims.GetAudience()
	if err != nil {
		return "", errors.Wrap(err, "decode audience")
	}
	if len(aud) != 1 {
		return "", errors.Errorf("token has %d audiences, want 1", len(aud))
	}
	return aud[0], nil
}
