package main

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/ecomonitor-io/ecomonitorgo/internal/config"
	"github.com/ecomonitor-io/ecomonitorgo/internal/database"
	"github.com/ecomonitor-io/ecomonitorgo/internal/models"
	"github.com/ecomonitor-io/ecomonitorgo/internal/utils"
)

func main() {
	fmt.Println("🌱 ecomonitor Demo Data Seeder")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("🔨 Running database migrations...")
	err = db.AutoMigrate(
		&models.User{},
		&models.Device{},
		&models.SensorReading{},
		&models.DeviceCommand{},
		&models.AlertEvent{},
	)
	if err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	var deviceCount int64
	db.Model(&models.Device{}).Count(&deviceCount)
	if deviceCount > 0 {
		fmt.Printf("⚠️  Database already has %d devices. Clear it first? (y/N): ", deviceCount)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("❌ Aborted. Database not modified.")
			return
		}
		db.Exec("DELETE FROM alert_events")
		db.Exec("DELETE FROM device_commands")
		db.Exec("DELETE FROM sensor_readings")
		db.Exec("DELETE FROM devices")
		db.Exec("DELETE FROM users")
	}

	password, err := utils.HashPassword("demo1234")
	if err != nil {
		log.Fatalf("❌ Failed to hash demo password: %v", err)
	}
	user := models.User{
		ID:       uuid.NewString(),
		Email:    "demo@ecomonitor.local",
		Password: password,
		Name:     "Demo User",
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("❌ Failed to create demo user: %v", err)
	}
	fmt.Printf("👤 Demo user: %s / demo1234\n", user.Email)

	deviceIDs := []string{"GG-TEST-001", "TG-TEST-002", "HG-TEST-003"}
	for i, id := range deviceIDs {
		device := models.Device{
			OwnerID:  &user.ID,
			DeviceID: id,
			Name:     fmt.Sprintf("Test Device %d", i+1),
		}
		if err := db.Create(&device).Error; err != nil {
			log.Fatalf("❌ Failed to create device %s: %v", id, err)
		}

		// A week of hourly readings inside the safe band
		for hoursAgo := 0; hoursAgo < 24*7; hoursAgo++ {
			createdAt := time.Now().Add(-time.Duration(hoursAgo) * time.Hour)
			min, max := device.Model.DefaultLimits()
			value := min + rand.Float64()*(max-min)
			raw := 200 + rand.Intn(100)
			voltage := 0.1 + rand.Float64()*0.2
			reading := models.SensorReading{
				DeviceID:  device.ID,
				Value:     value,
				RawValue:  &raw,
				Voltage:   &voltage,
				CreatedAt: createdAt,
			}
			if err := db.Create(&reading).Error; err != nil {
				log.Fatalf("❌ Failed to create reading: %v", err)
			}
		}

		// One queued command so a simulated device has something to drain
		cmd := models.DeviceCommand{
			DeviceID:    device.ID,
			CommandType: models.CommandDisplayMessage,
			Payload:     "hello from the seeder",
		}
		if err := db.Create(&cmd).Error; err != nil {
			log.Fatalf("❌ Failed to create command: %v", err)
		}

		fmt.Printf("📟 %s (%s) seeded with a week of readings\n", device.Name, device.DeviceID)
	}

	fmt.Println("✅ Successfully created test data")
}
