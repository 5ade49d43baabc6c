package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DomainView separates view hashes from any other content hashed with
// SHA-256. It changes whenever the definition format does.
const DomainView = "fhirflat/view/v" + FormatVersion

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ViewHash computes a stable identity for a view definition. Two
// definitions that differ only in key order or number spelling hash equal.
func ViewHash(def ViewDefinition) (string, error) {
	raw, err := json.Marshal(def)
	if err != nil {
		return "", fmt.Errorf("ViewHash: failed to marshal: %w", err)
	}
	var generic any
	if err := DecodeJSON(raw, &generic); err != nil {
		return "", fmt.Errorf("ViewHash: failed to decode: %w", err)
	}
	canonical, err := MarshalCanonical(generic)
	if err != nil {
		return "", fmt.Errorf("ViewHash: failed to canonicalize: %w", err)
	}
	return hashWithDomain(DomainView, canonical), nil
}
