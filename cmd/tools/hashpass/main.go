// hashpass 生成 DEBUG_PASSWORD_HASH（bcrypt），不带参数时从标准输入读一行
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"cricchat.local/internal/platform/auth"
)

func main() {
	var password string
	switch len(os.Args) {
	case 1:
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatal("usage: go run ./cmd/tools/hashpass [password]  (or pipe it on stdin)")
		}
		password = strings.TrimRight(line, "\r\n")
	case 2:
		password = os.Args[1]
	default:
		log.Fatal("usage: go run ./cmd/tools/hashpass [password]")
	}
	if password == "" {
		log.Fatal("empty password")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("DEBUG_PASSWORD_HASH='%s'\n", hash)
}
