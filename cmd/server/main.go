package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"mc3e/internal/api"
	"mc3e/internal/app"
	"mc3e/internal/config"
	"mc3e/internal/settings"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	w, st, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("start: %v", err)
	}
	defer st.Close()

	// сервер запускает мир от имени мастера: версия и миграция применяются сразу
	rep, err := w.Startup(ctx, settings.User{Name: "server", Role: settings.RoleGamemaster})
	if err != nil {
		log.Fatalf("world startup: %v", err)
	}
	fmt.Printf("Документов загружено: %d (с ошибками: %d, отклонено: %d)\n",
		rep.Load.Accepted, rep.Load.Invalid, rep.Load.Rejected)

	fmt.Printf("Стартуем сервер mc3e на :%s...\n", cfg.Port)
	if err := api.RunServer(":"+cfg.Port, w); err != nil {
		log.Fatalf("server: %v", err)
	}
}
