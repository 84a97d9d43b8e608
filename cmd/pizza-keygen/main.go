package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"

	"pizzaservice/internal/shared"
)

func main() {
	dir := pflag.String("out", ".", "directory for pub_key.pem and priv_key.pem")
	bits := pflag.Int("bits", 2048, "RSA key size")
	pflag.Parse()

	if err := os.MkdirAll(*dir, 0o700); err != nil {
		log.Fatalf("create %s: %v", *dir, err)
	}
	km, err := shared.GenerateKeyMaterial(*bits)
	if err != nil {
		log.Fatal(err)
	}
	pub, priv, err := shared.WriteKeyMaterial(*dir, km)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("public key: ", pub)
	fmt.Println("private key:", priv)
}
