package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	"textenger/config"

	"github.com/go-sql-driver/mysql"
)

// 子表在前，父表在后
var tables = []string{
	"messages",
	"direct_messages",
	"room_messages",
	"channels",
	"room_members",
	"rooms",
	"user_settings",
	"profiles",
}

func main() {
	keepUsers := flag.Bool("keep-users", false, "保留用户资料与设置，只清空聊天数据")
	yes := flag.Bool("yes", false, "跳过确认")
	flag.Parse()

	cfg := config.LoadConfig()
	if cfg.Database.Driver != "" && cfg.Database.Driver != "mysql" {
		log.Fatalf("reset_db 只支持 mysql，当前驱动: %s", cfg.Database.Driver)
	}

	// Build DSN
	dsnCfg := mysql.NewConfig()
	dsnCfg.User = cfg.Database.Username
	dsnCfg.Passwd = cfg.Database.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	dsnCfg.DBName = cfg.Database.Database
	dsnCfg.ParseTime = true
	if cfg.Database.Charset != "" {
		dsnCfg.Params = map[string]string{"charset": cfg.Database.Charset}
	}

	db, err := sql.Open("mysql", dsnCfg.FormatDSN())
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Database connection test failed: %v", err)
	}
	fmt.Printf("Database: %s@%s\n", cfg.Database.Database, dsnCfg.Addr)

	targets := tables
	if *keepUsers {
		targets = tables[:6]
	}

	if !*yes {
		fmt.Printf("\nWARNING: This operation will CLEAR ALL DATA in tables %v!\n", targets)
		fmt.Print("Type 'YES' to confirm: ")
		var confirm string
		_, _ = fmt.Scanln(&confirm)
		if confirm != "YES" {
			fmt.Println("Operation cancelled")
			return
		}
	}

	// Disable FK checks to avoid constraint issues
	_, _ = db.Exec("SET FOREIGN_KEY_CHECKS=0")
	defer func() { _, _ = db.Exec("SET FOREIGN_KEY_CHECKS=1") }()

	failed := 0
	for _, table := range targets {
		fmt.Printf("Truncating %s... ", table)
		// ID 由 snowflake 生成，TRUNCATE 即可，无需重置自增
		if _, err := db.Exec("TRUNCATE TABLE `" + table + "`"); err != nil {
			fmt.Printf("Failed: %v\n", err)
			failed++
			continue
		}
		fmt.Println("Success")
	}

	if failed > 0 {
		log.Fatalf("%d table(s) could not be cleared", failed)
	}
	fmt.Println("\nDatabase reset completed, table structure preserved")
	fmt.Println("Remember to flush the redis message cache (textenger:*) as well")
}
