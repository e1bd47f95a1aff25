package config

import (
	"os"
	"strconv"
	"time"
)

// intEnv reads name as an integer environment variable and calls set with
// the parsed value; non-numeric or absent values are silently ignored,
// matching the teacher's permissive env-override style.
func intEnv(name string, set func(int)) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	set(n)
}

func msToDuration(ms int) time.Duration  { return time.Duration(ms) * time.Millisecond }
func secToDuration(s int) time.Duration { return time.Duration(s) * time.Second }
