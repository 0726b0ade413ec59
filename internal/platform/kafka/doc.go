// Package kafka connects the scheduler to Kafka: TransitionPublisher sends
// task transitions to a topic, and CommandConsumer turns command messages
// into scheduler operations.
package kafka
