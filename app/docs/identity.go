package docs

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// identitySeparator never survives normalizeText, so it cannot appear in either field.
// Changing it invalidates every persisted ledger.
const identitySeparator = "\n"

func IdentityOf(record Record) Identity {
	return HashParts(record.Title, record.Link)
}

func HashParts(title, link string) Identity {
	content := title + identitySeparator + link

	hash := sha256.Sum256([]byte(content))
	return Identity(hex.EncodeToString(hash[:]))
}

// normalizeText collapses all runs of whitespace, including newlines, to single spaces.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
