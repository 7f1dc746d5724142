package mailer

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/sharath018/bgv-verification-backend/utils"
)

// StartKafkaConsumer drains the mail-dispatch topic in-process. Failed
// sends are logged and the message is committed anyway; delivery is
// best-effort.
func StartKafkaConsumer(svc Service) {
	if !utils.KafkaEnabled() {
		return
	}

	go func() {
		reader := utils.NewMailReader()
		defer reader.Close()

		log.Println("✅ Mail consumer started")
		for {
			msg, err := reader.ReadMessage(context.Background())
			if err != nil {
				log.Printf("⚠️ mail consumer read error: %v", err)
				time.Sleep(2 * time.Second)
				continue
			}

			var job Job
			if err := json.Unmarshal(msg.Value, &job); err != nil {
				log.Printf("⚠️ mail consumer: dropping malformed job: %v", err)
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			if err := svc.Send(ctx, job); err != nil {
				log.Printf("❌ mail send failed (%s/%s): %v", job.Module, job.Action, err)
			}
			cancel()
		}
	}()
}
