package logging

import (
	"io"
	"log"
	"os"
)

func captureLog(w io.Writer) func() {
	flags := log.Flags()
	log.SetOutput(w)
	log.SetFlags(0)
	SetLevel("info")
	return func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	}
}
