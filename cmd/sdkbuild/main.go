package main

import "github.com/Akylas/mobile-sdk/internal/sdkbuild"

func main() {
	sdkbuild.Main()
}
