//go:build ignore

// Script to generate ADMIN_TOKEN_HASH for the debug and admin routes.
// Run with: go run scripts/hash_admin_token.go -token yourtoken
// or pipe the token on stdin to keep it out of shell history.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	token := flag.String("token", "", "Admin token to hash (read from stdin when empty)")
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	flag.Parse()

	if *token == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Println("Usage: go run scripts/hash_admin_token.go -token <token>")
			os.Exit(1)
		}
		*token = strings.TrimSpace(line)
	}
	if len(*token) < 12 {
		log.Fatal("Admin token must be at least 12 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*token), *cost)
	if err != nil {
		log.Fatalf("Failed to hash token: %v", err)
	}

	fmt.Printf("ADMIN_TOKEN_HASH=%s\n", hash)
}
