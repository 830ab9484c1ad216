package ticket

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/text/unicode/norm"
)

// identityKey separates ticket identities from any other BLAKE3 use. It is
// the ASCII domain name zero-padded to 32 bytes; changing it re-keys every
// stored ticket.
var identityKey = [32]byte{
	's', 'c', 'o', 'r', 'a', 'c', 'l', 'e', '.', 't', 'i', 'c', 'k', 'e', 't', '.',
	'i', 'd', 'e', 'n', 't', 'i', 't', 'y', 0, 0, 0, 0, 0, 0, 0, 0,
}

// Identity derives the stable ticket ID from match, venue and URL so that
// repeated scrapes of the same offering collide. Match and venue are
// NFKC-folded, lowercased and stripped of whitespace, which keeps the ID
// stable across cosmetic corrections on the site.
func Identity(matchName, venue, ticketURL string) string {
	h, err := blake3.NewKeyed(identityKey[:])
	if err != nil {
		// Only possible with a key that is not 32 bytes.
		panic("ticket: identity hasher: " + err.Error())
	}
	for _, part := range []string{foldKey(matchName), foldKey(venue), strings.TrimSpace(ticketURL)} {
		_, _ = h.Write([]byte(part))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func foldKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(norm.NFKC.String(s)), ""))
}
