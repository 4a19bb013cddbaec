// Package roundid generates sortable identifiers for rounds and history
// entries: a UUIDv7 rendered as 26 characters of Crockford base32.
package roundid

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Generator produces ids. A nil reader uses crypto/rand.
type Generator struct {
	rand io.Reader
}

// NewGenerator creates a generator that reads its random bits from r.
func NewGenerator(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// New returns a fresh id from the default generator.
func New() string {
	return NewGenerator(nil).New()
}

// New returns a fresh id.
func (g *Generator) New() string {
	var (
		id  uuid.UUID
		err error
	)
	if g.rand != nil {
		id, err = uuid.NewV7FromReader(g.rand)
	} else {
		id, err = uuid.NewV7()
	}
	if err != nil {
		panic("roundid: failed to generate uuid: " + err.Error())
	}
	return Encode(id)
}

// Encode renders a uuid as 26 base32 characters. The 128 bits are left
// padded with two zero bits so the first character is always 0-7 and the
// string sorts in the same order as the uuid bytes.
func Encode(id uuid.UUID) string {
	out := make([]byte, 26)
	bit := -2
	for i := range out {
		var v byte
		for j := 0; j < 5; j++ {
			v <<= 1
			if bit >= 0 && id[bit/8]&(0x80>>(bit%8)) != 0 {
				v |= 1
			}
			bit++
		}
		out[i] = alphabet[v]
	}
	return string(out)
}

// Validate checks that id has the shape produced by Encode.
func Validate(id string) error {
	if len(id) != 26 {
		return fmt.Errorf("round id must be exactly 26 characters, got %d", len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("round id first character must be 0-7, got %c", id[0])
	}
	for i, c := range id {
		if !strings.ContainsRune(alphabet, c) {
			return fmt.Errorf("invalid character %c at position %d", c, i)
		}
	}
	return nil
}
