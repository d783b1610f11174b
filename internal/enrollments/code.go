package enrollments

import (
	"fmt"
	"math/rand/v2"
)

// CodeSource proposes a student code for the given intake year.
type CodeSource func(year int) string

// RandomCodes draws WR{YYYY}{NNN} with three random digits.
func RandomCodes(year int) string {
	return fmt.Sprintf("WR%04d%03d", year, rand.IntN(1000))
}
