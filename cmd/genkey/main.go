// Command genkey prints a freshly generated admin API key plus its stored
// hash and prefix, for seeding the admin_api_keys table out of band.
// Grounded on the teacher's cmd/genkey/main.go.
package main

import (
	"fmt"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

func main() {
	key, hash, prefix, err := domain.GenerateAdminAPIKey()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("KEY=%s\nHASH=%s\nPREFIX=%s\n", key, hash, prefix)
}
