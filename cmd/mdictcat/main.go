// Command mdictcat opens an MDX dictionary and prints the definition
// (or, with -resource, the size in bytes of the MDD resource) for each
// word given on the command line.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-mdict/mdict"
)

func main() {
	dictPath := flag.String("dict", "", "path to the .mdx dictionary file (required)")
	resource := flag.Bool("resource", false, "look up MDD resources instead of MDX definitions")
	flag.Parse()

	if *dictPath == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: mdictcat -dict path/to/file.mdx word...")
		os.Exit(2)
	}

	dict, err := mdict.Open(*dictPath)
	if err != nil {
		log.Fatalf("mdictcat: open %s: %v", *dictPath, err)
	}
	defer dict.Close()

	exitCode := 0
	for _, word := range flag.Args() {
		if *resource {
			payload, ok, err := dict.Resource(word)
			if err != nil {
				log.Printf("mdictcat: resource %q: %v", word, err)
				exitCode = 1
				continue
			}
			if !ok {
				fmt.Printf("%s: not found\n", word)
				continue
			}
			fmt.Printf("%s: %d bytes\n", word, len(payload))
			continue
		}

		definition, ok, err := dict.LookupString(word)
		if err != nil {
			log.Printf("mdictcat: lookup %q: %v", word, err)
			exitCode = 1
			continue
		}
		if !ok {
			fmt.Printf("%s: not found\n", word)
			continue
		}
		fmt.Printf("%s: %s\n", word, definition)
	}
	os.Exit(exitCode)
}
