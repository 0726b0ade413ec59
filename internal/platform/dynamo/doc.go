// Package dynamo provides a DynamoDB-backed store.KVStore. Each key is one
// item in a table whose partition key is the string attribute "key".
package dynamo
