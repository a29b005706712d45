// Package logger holds the process-wide mission log. Console output is owned
// by the listener package, so everything here goes to the log file only.
package logger

import (
	"log"
	"os"
)

var Log *log.Logger

func Init(path string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	Log = log.New(file, "", log.LstdFlags|log.Lmicroseconds)
	Log.Println("pilot log opened")
	return nil
}
