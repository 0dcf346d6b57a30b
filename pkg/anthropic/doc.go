// Package anthropic is a typed client for the Anthropic Messages API.
//
// It covers blocking and streaming message creation, including tool
// use and vision input:
//
//	client := anthropic.NewClient(apiKey)
//	resp, err := client.Messages(ctx, &anthropic.MessagesRequest{
//		Model:     "claude-sonnet-4-5",
//		MaxTokens: 1024,
//		Messages: []anthropic.InputMessage{
//			anthropic.NewUserText("Hello"),
//		},
//	})
//
// Streaming yields raw SSE events; callers assemble deltas themselves:
//
//	for event, err := range client.MessagesStream(ctx, req) {
//		if err != nil {
//			return err
//		}
//		if event.Type == anthropic.EventContentBlockDelta && event.Delta.Type == anthropic.DeltaText {
//			fmt.Print(event.Delta.Text)
//		}
//	}
package anthropic
