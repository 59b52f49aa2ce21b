// Command review-hub collects storefront reviews into a shared sink.
package main

import (
	"github.com/JakeFAU/review-hub/cmd"
)

func main() {
	cmd.Execute()
}
