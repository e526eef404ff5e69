package utils

import (
	"log"
	"os"
)

// GetLogger returns the process logger used across the backend.
func GetLogger() *log.Logger {
	return log.New(os.Stdout, "arcinvoice: ", log.Ldate|log.Ltime|log.Lshortfile)
}
