// derive_key.go prints the public key and owner address for a node's raw
// binary miner key file (the format cmd/trinitynoded writes to DATA_DIR).
// Usage: go run scripts/derive_key.go <datadir>/miner.key
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/trinity-chain/trinitynode/pkg/crypto"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: derive_key <keyfile>")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	key, err := crypto.PrivateKeyFromBytes(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	pub := key.PublicKey()
	fmt.Printf("pubkey=%s\n", hex.EncodeToString(pub))
	fmt.Printf("address=%s\n", crypto.Address(pub))
}
