package main

import (
	"fmt"
	"os"

	cryptoinfra "meshwatch/internal/infra/crypto"
)

// runFingerprint prints the 1-byte channel fingerprint for each key, so an
// operator can match configured keys against the channel_hash values seen on
// the air.
func runFingerprint(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "fingerprint requires at least one key")
		return 1
	}

	cache := cryptoinfra.NewFingerprintCache()
	code := 0
	for _, key := range args {
		if _, err := cryptoinfra.DecodeChannelKey(key); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", key, err)
			code = 1
			continue
		}
		fmt.Printf("%s\t%s\n", cache.Fingerprint(key), key)
	}
	return code
}
