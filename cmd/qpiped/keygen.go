package main

import (
	"flag"
	"fmt"
	"os"

	"qpiped/internal/pki"
)

func runKeygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	outCSR := fs.String("out-csr", "client.csr", "path to write the CSR (PEM)")
	outKey := fs.String("out-key", "client.key", "path to write the client private key (PEM)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	csrDER, keyDER, err := pki.GenerateClientCSR()
	if err != nil {
		return fmt.Errorf("generate CSR: %w", err)
	}

	if err := writePEM(*outCSR, "CERTIFICATE REQUEST", csrDER, 0644); err != nil {
		return err
	}
	if err := writePEM(*outKey, "RSA PRIVATE KEY", keyDER, 0600); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "wrote %s and %s\nsend %s to the server operator for signing\n", *outCSR, *outKey, *outCSR)
	return nil
}
