package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/DenisKhanov/DispenserAdmin/internal/app/dashboard"
)

func main() {
	ctx := context.Background()
	a, err := dashboard.NewApp(ctx)
	if err != nil {
		logrus.Fatalf("failed to init app: %s", err.Error())
	}
	a.Run()
}
