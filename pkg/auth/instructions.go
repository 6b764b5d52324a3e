package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowAPIKeyGuide explains where the provider API key comes from
func ShowAPIKeyGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "XENO-CANTO API KEY")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Newer versions of the recordings API require a personal key.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. Sign in at https://xeno-canto.org")
	fmt.Fprintln(w, "  2. Open your account page and copy the API key")
	fmt.Fprintln(w, "  3. Run 'xcscraper auth set-key' and paste it at the prompt")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "The key can also be supplied through %s or provider.api_key.\n", APIKeyEnv)
	fmt.Fprintln(w, "Stored keys go to the system keychain, or an encrypted file when")
	fmt.Fprintln(w, "no keychain is available.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
