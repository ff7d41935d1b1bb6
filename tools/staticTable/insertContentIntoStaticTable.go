package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// Reads lines of the form "index;name;value" (RFC 7541 Appendix A) and prints
// the entries of the static table literal in internal/hpack/header.go.
func main() {
	var path = flag.String("content", "", "The content of the file to insert")
	flag.Parse()

	if *path == "" {
		log.Fatal("The file path is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	want := 1
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		splitLine := strings.SplitN(line, ";", 3)
		if len(splitLine) < 2 {
			log.Fatalf("malformed line %q", line)
		}
		for i, element := range splitLine {
			splitLine[i] = strings.TrimSpace(element)
		}

		index, err := strconv.Atoi(splitLine[0])
		if err != nil || index != want {
			log.Fatalf("expected index %d, got %q", want, splitLine[0])
		}
		want++

		if len(splitLine) == 2 || splitLine[2] == "" {
			fmt.Printf("\t{Name: %q},\n", splitLine[1])
			continue
		}
		fmt.Printf("\t{Name: %q, Value: %q},\n", splitLine[1], splitLine[2])
	}

	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}
}
