package main

import (
	"flag"
	"fmt"
	"os"

	"qpiped/internal/certstore"
	"qpiped/internal/pkgcodec"
	"qpiped/internal/pki"
)

func runIssue(args []string) error {
	fs := flag.NewFlagSet("issue", flag.ExitOnError)
	stateDir := fs.String("state", defaultStateDir, "server state directory holding the CA")
	sans := fs.String("sans", "localhost", "comma-separated SANs for a CA bootstrapped by this command")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: qpiped issue <csr-file>")
	}

	csrDER, err := readPEM(fs.Arg(0), "CERTIFICATE REQUEST")
	if err != nil {
		return err
	}

	caCert, caKey, err := certstore.LoadOrGenerateServer(*stateDir, splitCSV(*sans))
	if err != nil {
		return fmt.Errorf("load CA: %w", err)
	}

	leafDER, err := pki.MintClient(caCert, caKey, csrDER)
	if err != nil {
		return fmt.Errorf("sign CSR: %w", err)
	}

	pkg, err := pkgcodec.Write(pkgcodec.Bundle{
		ServerCert: caCert.Raw,
		ClientCert: leafDER,
	})
	if err != nil {
		return fmt.Errorf("encode package: %w", err)
	}

	fmt.Fprintln(os.Stdout, pkg)
	return nil
}
