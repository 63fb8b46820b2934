package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/perezale/ldb"
)

func main() {
	var (
		dir     = flag.String("db", "", "Path to the table directory (required)")
		keyLen  = flag.Int("keylen", 4, "Total key length in bytes")
		recLen  = flag.Int("reclen", 0, "Fixed record length in bytes, 0 for variable-length records")
		dump    = flag.Bool("dump", false, "Dump every record as CSV to stdout")
		hexData = flag.Bool("hex", false, "Render record payloads as hexadecimal")
		get     = flag.String("get", "", "Print the first record stored under the given hex key")
		exists  = flag.String("exists", "", "Report whether the given hex key holds any record")
		verbose = flag.Bool("v", false, "Verbose output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "LDB table tool\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -db /var/lib/ldb/purl -dump -hex\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -db /var/lib/ldb/purl -get 6b657931\n", os.Args[0])
	}

	flag.Parse()

	if *dir == "" {
		fmt.Fprintf(os.Stderr, "Error: -db is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	table := ldb.Table{Dir: *dir, KeyLen: *keyLen, RecLen: *recLen}

	switch {
	case *dump:
		logger := zap.NewNop()
		if *verbose {
			var err error
			if logger, err = zap.NewDevelopment(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		total, err := table.Dump(os.Stdout, &ldb.DumpOptions{HexData: *hexData, Logger: logger})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error dumping table: %v\n", err)
			os.Exit(1)
		}
		if *verbose {
			logger.Info("ldb: dump complete", zap.Uint64("records", total))
		}

	case *get != "":
		key := parseKey(*get, *keyLen)
		record, ok := table.GetFirstRecord(key)
		if !ok {
			fmt.Fprintf(os.Stderr, "Key not found\n")
			os.Exit(1)
		}
		if *hexData {
			fmt.Printf("%x\n", record)
		} else {
			os.Stdout.Write(record)
		}

	case *exists != "":
		key := parseKey(*exists, *keyLen)
		fmt.Println(table.KeyExists(key))

	default:
		fmt.Fprintf(os.Stderr, "Error: one of -dump, -get or -exists is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
}

func parseKey(s string, keyLen int) []byte {
	key, err := hex.DecodeString(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid hex key %q: %v\n", s, err)
		os.Exit(1)
	}
	if len(key) != keyLen {
		fmt.Fprintf(os.Stderr, "Error: key %q is %d bytes, table expects %d\n", s, len(key), keyLen)
		os.Exit(1)
	}
	return key
}
