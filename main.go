package main

import "badge-kiosk-backend/cmd"

func main() {
	cmd.Run()
}
