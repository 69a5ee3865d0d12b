package irc

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// SASL is a client-side SASL mechanism. Mechanism returns the wire name
// sent with AUTHENTICATE; Respond consumes one decoded server challenge
// ("+" for the empty challenge) and produces the next base64 payload.
// Completed reports whether the client has sent its last payload and the
// exchange is only waiting on the numeric outcome.
type SASL interface {
	Mechanism() string
	Respond(challenge string) (string, error)
	Completed() bool
}

// NewSASL constructs the mechanism named in the configuration.
func NewSASL(mechanism, username, password string) (SASL, error) {
	switch mechanism {
	case "", "PLAIN":
		return &Plain{Username: username, Password: password}, nil
	case "SCRAM-SHA-256":
		return newSCRAM(mechanism, username, password, sha256.New), nil
	case "SCRAM-SHA-512":
		return newSCRAM(mechanism, username, password, sha512.New), nil
	}
	return nil, fmt.Errorf("unsupported SASL mechanism %q", mechanism)
}

// Plain is the SASL PLAIN mechanism: base64(authzid \0 authcid \0 password),
// with authzid and authcid both set to the account name.
type Plain struct {
	Username string
	Password string

	sent bool
}

func (p *Plain) Mechanism() string { return "PLAIN" }

func (p *Plain) Respond(challenge string) (string, error) {
	if challenge != "+" {
		return "", errors.New("unexpected SASL challenge")
	}
	p.sent = true
	payload := p.Username + "\x00" + p.Username + "\x00" + p.Password
	return base64.StdEncoding.EncodeToString([]byte(payload)), nil
}

func (p *Plain) Completed() bool { return p.sent }

// scram implements SCRAM-SHA-256 and SCRAM-SHA-512.
type scram struct {
	mechanism string
	username  string
	password  string
	newHash   func() hash.Hash

	clientNonce    string
	firstBare      string
	serverKey      []byte
	expectSignOnly bool
	verified       bool
}

func newSCRAM(mechanism, username, password string, newHash func() hash.Hash) *scram {
	return &scram{
		mechanism:   mechanism,
		username:    username,
		password:    password,
		newHash:     newHash,
		clientNonce: newNonce(),
	}
}

func newNonce() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func (s *scram) Mechanism() string { return s.mechanism }

func (s *scram) Respond(challenge string) (string, error) {
	if challenge == "+" {
		// client-first-message, gs2 header without channel binding
		s.firstBare = fmt.Sprintf("n=%s,r=%s", s.username, s.clientNonce)
		payload := "n,," + s.firstBare
		return base64.StdEncoding.EncodeToString([]byte(payload)), nil
	}

	decoded, err := base64.StdEncoding.DecodeString(challenge)
	if err != nil {
		return "", fmt.Errorf("malformed SCRAM challenge: %w", err)
	}
	serverFirst := string(decoded)

	if s.expectSignOnly {
		if err := s.verifyServerSignature(serverFirst); err != nil {
			return "", err
		}
		s.verified = true
		return "+", nil
	}

	attrs := parseSCRAMAttrs(serverFirst)
	serverNonce := attrs["r"]
	if !strings.HasPrefix(serverNonce, s.clientNonce) {
		return "", errors.New("SCRAM server nonce does not extend client nonce")
	}
	salt, err := base64.StdEncoding.DecodeString(attrs["s"])
	if err != nil {
		return "", fmt.Errorf("malformed SCRAM salt: %w", err)
	}
	iterations, err := strconv.Atoi(attrs["i"])
	if err != nil || iterations <= 0 {
		return "", errors.New("malformed SCRAM iteration count")
	}

	salted := pbkdf2.Key([]byte(s.password), salt, iterations, s.newHash().Size(), s.newHash)
	clientKey := s.hmac(salted, "Client Key")
	storedKey := s.digest(clientKey)
	s.serverKey = s.hmac(salted, "Server Key")

	finalNoProof := fmt.Sprintf("c=%s,r=%s",
		base64.StdEncoding.EncodeToString([]byte("n,,")), serverNonce)
	authMessage := s.firstBare + "," + serverFirst + "," + finalNoProof
	s.firstBare = authMessage // reused to check the server signature

	signature := s.hmac(storedKey, authMessage)
	proof := make([]byte, len(clientKey))
	for i := range clientKey {
		proof[i] = clientKey[i] ^ signature[i]
	}

	s.expectSignOnly = true
	final := finalNoProof + ",p=" + base64.StdEncoding.EncodeToString(proof)
	return base64.StdEncoding.EncodeToString([]byte(final)), nil
}

func (s *scram) Completed() bool { return s.verified }

func (s *scram) verifyServerSignature(serverFinal string) error {
	attrs := parseSCRAMAttrs(serverFinal)
	want := base64.StdEncoding.EncodeToString(s.hmac(s.serverKey, s.firstBare))
	if attrs["v"] != want {
		return errors.New("SCRAM server signature mismatch")
	}
	return nil
}

func (s *scram) hmac(key []byte, data string) []byte {
	mac := hmac.New(s.newHash, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func (s *scram) digest(data []byte) []byte {
	h := s.newHash()
	h.Write(data)
	return h.Sum(nil)
}

func parseSCRAMAttrs(message string) map[string]string {
	attrs := make(map[string]string)
	for _, part := range strings.Split(message, ",") {
		if len(part) >= 2 && part[1] == '=' {
			attrs[part[:1]] = part[2:]
		}
	}
	return attrs
}
