package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hpackCodec/internal/helper"
)

func main() {
	org := flag.String("org", "hpack", "Organization name")
	hosts := flag.String("hosts", "", "Comma separated IP addresses and DNS names")
	name := flag.String("name", "", "Files will be saved as {name}-cert.pem and {name}-key.pem")
	dir := flag.String("dir", ".", "Output directory")
	validFor := flag.Duration("valid", 365*24*time.Hour, "Validity period")
	flag.Parse()

	if *hosts == "" || *name == "" {
		flag.Usage()
		os.Exit(1)
	}

	certPEM, keyPEM, err := helper.GenerateCertificate(*org, strings.Split(*hosts, ","), *validFor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating certificate: %v\n", err)
		os.Exit(1)
	}

	certPath := filepath.Join(*dir, *name+"-cert.pem")
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing certificate: %v\n", err)
		os.Exit(1)
	}

	keyPath := filepath.Join(*dir, *name+"-key.pem")
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "error writing private key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s and %s\n", certPath, keyPath)
}
