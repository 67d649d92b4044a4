package ingest

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"clinicore/crypt"
	"clinicore/store"
)

// Allocator hands out per-script, per-year sequence numbers. The counter
// table is the source of truth; when it cannot be read the allocator
// reconstructs the high-water mark from the stored identity tokens.
type Allocator struct {
	DB     *store.DB
	Cipher *crypt.Cipher
}

// Next returns the next sequence number for (scriptID, year).
func (a *Allocator) Next(scriptID string, year int) (int, error) {
	seq, err := a.DB.NextSequence(scriptID, year)
	if err == nil {
		return seq, nil
	}
	log.Printf("ingest: sequence counter for %s/%d unavailable, reconstructing: %v", scriptID, year, err)
	return a.reconstruct(scriptID, year)
}

// reconstruct scans the year's identity tokens and returns one past the
// highest suffix found. Tokens that fail to decrypt or parse are skipped;
// an empty year starts at 1.
func (a *Allocator) reconstruct(scriptID string, year int) (int, error) {
	tokens, err := a.DB.ListIdentityTokensByScriptYear(scriptID, year)
	if err != nil {
		return 0, fmt.Errorf("reconstruct sequence for %s/%d: %w", scriptID, year, err)
	}
	max := 0
	for _, sealed := range tokens {
		plain, err := a.Cipher.Decrypt(sealed)
		if err != nil {
			log.Printf("ingest: skipping undecryptable identity token: %v", err)
			continue
		}
		n, ok := trailingSequence(plain)
		if !ok {
			log.Printf("ingest: skipping identity without numeric suffix: %q", plain)
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

// trailingSequence extracts the numeric suffix of a decrypted identity.
func trailingSequence(identity string) (int, bool) {
	i := strings.LastIndex(identity, "-")
	if i < 0 || i == len(identity)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(identity[i+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
