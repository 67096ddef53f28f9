package main

func main() {
	SetupServeCmd()
	SetupValidateCmd()
	SetupTransformCmd()
	Execute()
}
