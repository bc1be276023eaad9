// pseudodevice sends the HTTP check-ins a real guard device would, so the
// backend can be exercised without hardware.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

type checkIn struct {
	DeviceID string  `json:"device_id"`
	Value    float64 `json:"value"`
	RawValue int     `json:"raw_value"`
	Voltage  float64 `json:"voltage"`
}

type checkInResponse struct {
	Command   string `json:"command"`
	Payload   string `json:"payload"`
	Status    string `json:"status"`
	ReadingID uint   `json:"reading_id"`
	Error     string `json:"error"`
}

func main() {
	url := flag.String("url", "http://localhost:8000/api/sensor-readings", "check-in endpoint")
	deviceID := flag.String("device", "GG-A5080814", "device id")
	value := flag.Float64("value", 24, "reported measurement value")
	interval := flag.Int("interval", 3, "seconds between check-ins")
	flag.Parse()

	client := &http.Client{Timeout: 15 * time.Second}
	sleep := time.Duration(*interval) * time.Second

	for {
		body, _ := json.Marshal(checkIn{
			DeviceID: *deviceID,
			Value:    *value,
			RawValue: 200 + rand.Intn(100),
			Voltage:  0.1 + rand.Float64()*0.2,
		})

		resp, err := client.Post(*url, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("check-in failed: %v", err)
			time.Sleep(sleep)
			continue
		}

		var parsed checkInResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if err != nil {
			log.Printf("bad response (%s): %v", resp.Status, err)
			time.Sleep(sleep)
			continue
		}

		switch {
		case parsed.Error != "":
			fmt.Printf("[%s] error: %s\n", resp.Status, parsed.Error)
		case parsed.Command != "":
			fmt.Printf("[%s] command received: %s payload=%q\n", resp.Status, parsed.Command, parsed.Payload)
			// Honor the one command a simulator can meaningfully execute.
			if parsed.Command == "change_reading_time" {
				if n, err := strconv.Atoi(parsed.Payload); err == nil && n >= 1 {
					sleep = time.Duration(n) * time.Second
					fmt.Printf("        sampling interval now %ds\n", n)
				}
			}
		default:
			fmt.Printf("[%s] reading accepted, id=%d\n", resp.Status, parsed.ReadingID)
		}

		time.Sleep(sleep)
	}
}
