package socketio_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wireio/socketio"
	"github.com/wireio/socketio/engine"
)

func ExampleClient() {
	client := socketio.NewClient()
	client.OnOpen(func() {
		log.Println("engine connected")
	})
	client.OnClose(func(reason engine.DisconnectReason) {
		log.Println("closed:", reason)
	})

	chat := client.Socket("/chat")
	chat.SetAuth(socketio.NewObject().Set("token", socketio.NewString("s3cr3t")).Build())
	chat.On("message", func(evt *socketio.Event) {
		text, _ := evt.Messages[0].String()
		log.Println("message:", text)
		evt.Ack(socketio.NewString("received"))
	})
	chat.OnAny(func(evt *socketio.Event) {
		log.Println("event:", evt.Name)
	})

	if err := client.Connect("ws://localhost:8080", socketio.ConnectOptions{}); err != nil {
		fmt.Println("connect err:", err)
		return
	}
	defer client.CloseSync()

	if err := chat.Emit("message", socketio.NewString("hello")); err != nil {
		fmt.Println("emit err:", err)
	}

	result, err := chat.EmitAsync("ping", nil, 5*time.Second).Wait(context.Background())
	if err != nil {
		fmt.Println("ack err:", err)
		return
	}
	fmt.Println("ack:", len(result))
}
