package users

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// GenerateUsername returns lower(first)+lower(last) followed by a random
// number in [1000, 9999]. Empty names are allowed. The result is not checked
// for uniqueness.
func GenerateUsername(firstName, lastName string) string {
	return buildUsername(firstName, lastName, rand.IntN)
}

func buildUsername(firstName, lastName string, intN func(int) int) string {
	first := strings.ToLower(strings.TrimSpace(firstName))
	last := strings.ToLower(strings.TrimSpace(lastName))
	return fmt.Sprintf("%s%s%d", first, last, 1000+intN(9000))
}
