package provider

import (
	"fmt"
	"math/rand"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// webID returns a 17-digit device identifier: "75" and 15 random digits.
func webID() string {
	return fmt.Sprintf("75%015d", rand.Int63n(1_000_000_000_000_000))
}

// placeholderSignature fills the slides API signature parameter with 64 random
// alphanumerics. It is a placeholder, not a real signature, and the API may
// reject it.
func placeholderSignature() string {
	b := make([]byte, 64)
	for i := range b {
		b[i] = alphanumeric[rand.Intn(len(alphanumeric))]
	}
	return string(b)
}
