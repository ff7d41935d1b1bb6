package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"log"
	"os"

	"hpackCodec/internal/hpack"
)

const (
	flagAccepted = 1
	flagSymbol   = 2
	flagFail     = 4

	eos     = 256
	leaf    = -1
	missing = 0
)

// child is either the id of an internal node or, for a leaf, -(sym+1).
type node [2]int

type entry struct {
	next, flags, sym int
}

func main() {
	var out = flag.String("out", "", "The file to write the decode table to, stdout if empty")
	flag.Parse()

	nodes := buildTree()
	if len(nodes) != 256 {
		log.Fatalf("huffman tree has %d internal nodes, want 256", len(nodes))
	}

	src, err := format.Source(render(buildTable(nodes, acceptingStates(nodes))))
	if err != nil {
		log.Fatal(err)
	}

	if *out == "" {
		_, err = os.Stdout.Write(src)
	} else {
		err = os.WriteFile(*out, src, 0o644)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// buildTree inserts the codes in symbol order. Internal nodes are numbered in
// creation order with the root as 0.
func buildTree() []node {
	nodes := []node{{missing, missing}}
	for sym := 0; sym <= eos; sym++ {
		code, nbits := hpack.HuffmanCode(sym)

		cur := 0
		for i := int(nbits) - 1; i > 0; i-- {
			bit := (code >> i) & 1
			if nodes[cur][bit] == missing {
				nodes = append(nodes, node{missing, missing})
				nodes[cur][bit] = len(nodes) - 1
			}
			cur = nodes[cur][bit]
		}
		nodes[cur][code&1] = -(sym + 1)
	}
	return nodes
}

// acceptingStates are the root and the nodes on the all-ones path shorter than
// eight bits; ending there means the input ended on valid padding.
func acceptingStates(nodes []node) map[int]bool {
	accept := map[int]bool{0: true}
	cur := 0
	for depth := 0; depth < 7; depth++ {
		cur = nodes[cur][1]
		accept[cur] = true
	}
	return accept
}

func buildTable(nodes []node, accept map[int]bool) [256][16]entry {
	var table [256][16]entry
	for state := range nodes {
		for nibble := 0; nibble < 16; nibble++ {
			table[state][nibble] = walk(nodes, accept, state, nibble)
		}
	}
	return table
}

func walk(nodes []node, accept map[int]bool, state, nibble int) entry {
	var e entry
	cur := state
	for i := 3; i >= 0; i-- {
		child := nodes[cur][(nibble>>i)&1]
		if child > leaf {
			cur = child
			continue
		}
		sym := -child - 1
		if sym == eos {
			return entry{flags: flagFail}
		}
		e.sym = sym
		e.flags |= flagSymbol
		cur = 0
	}
	if accept[cur] {
		e.flags |= flagAccepted
	}
	e.next = cur
	return e
}

func render(table [256][16]entry) []byte {
	var buf bytes.Buffer
	buf.WriteString("// Code generated by tools/huffmanTable; DO NOT EDIT.\n\n")
	buf.WriteString("package hpack\n\n")
	buf.WriteString("// huffmanDecodeTable[state][nibble] is the transition taken when the decoder in\n")
	buf.WriteString("// state consumes the next four bits of input.\n")
	buf.WriteString("var huffmanDecodeTable = [256][16]huffmanDecodeEntry{\n")
	for state, row := range table {
		fmt.Fprintf(&buf, "\t/* %d */ {\n", state)
		for line := 0; line < 4; line++ {
			buf.WriteString("\t\t")
			for i, e := range row[line*4 : line*4+4] {
				if i > 0 {
					buf.WriteByte(' ')
				}
				fmt.Fprintf(&buf, "{0x%02x, 0x%02x, 0x%02x},", e.next, e.flags, e.sym)
			}
			buf.WriteByte('\n')
		}
		buf.WriteString("\t},\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes()
}
