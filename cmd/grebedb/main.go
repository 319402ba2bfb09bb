// grebedb command line tool
// Export, import, dump, and verify grebedb databases
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/grebedb/grebedb"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "export":
		err = runExport(os.Args[2:])
	case "import":
		err = runImport(os.Args[2:])
	case "dump":
		err = runDump(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("grebedb: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: grebedb <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  export  -db <path> [-out <file>]   write the database as a JSON record sequence")
	fmt.Fprintln(os.Stderr, "  import  -db <path> [-in <file>]    load a JSON record sequence into the database")
	fmt.Fprintln(os.Stderr, "  dump    -db <path>                 print all key-value pairs")
	fmt.Fprintln(os.Stderr, "  verify  -db <path>                 check the tree's structural invariants")
}

func openDatabase(path string, mode grebedb.OpenMode) (*grebedb.Database, error) {
	opts := grebedb.DefaultOptions()
	opts.OpenMode = mode
	return grebedb.Open(path, opts)
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database directory path")
	outPath := fs.String("out", "", "Output file (default stdout)")
	fs.Parse(args)

	if *dbPath == "" {
		return fmt.Errorf("missing -db")
	}

	db, err := openDatabase(*dbPath, grebedb.OpenModeReadOnly)
	if err != nil {
		return err
	}
	defer db.Close()

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	total := db.KeyValueCount()
	err = grebedb.Export(db, out, func(count uint64) {
		if count%10000 == 0 {
			log.Printf("exported %d/%d", count, total)
		}
	})
	if err != nil {
		return err
	}

	log.Printf("exported %d key-value pairs", total)
	return nil
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database directory path")
	inPath := fs.String("in", "", "Input file (default stdin)")
	fs.Parse(args)

	if *dbPath == "" {
		return fmt.Errorf("missing -db")
	}

	db, err := openDatabase(*dbPath, grebedb.OpenModeLoadOrCreate)
	if err != nil {
		return err
	}
	defer db.Close()

	in := os.Stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var total uint64
	err = grebedb.Import(db, in, func(count uint64) {
		total = count
		if count%10000 == 0 {
			log.Printf("imported %d", count)
		}
	})
	if err != nil {
		return err
	}

	log.Printf("imported %d key-value pairs", total)
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database directory path")
	fs.Parse(args)

	if *dbPath == "" {
		return fmt.Errorf("missing -db")
	}

	db, err := openDatabase(*dbPath, grebedb.OpenModeReadOnly)
	if err != nil {
		return err
	}
	defer db.Close()

	cur := db.NewCursor()
	for {
		key, value, ok, err := cur.Next(nil)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fmt.Printf("%q = %q\n", key, value)
	}
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database directory path")
	fs.Parse(args)

	if *dbPath == "" {
		return fmt.Errorf("missing -db")
	}

	db, err := openDatabase(*dbPath, grebedb.OpenModeReadOnly)
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.Verify(func(current, estimatedTotal int) {
		if current%1000 == 0 {
			log.Printf("verified %d/~%d pages", current, estimatedTotal)
		}
	})
	if err != nil {
		return err
	}

	log.Printf("ok")
	return nil
}
