package sessiondao

import "github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

// Build creates a sessions DAO. An empty tableName falls back to the standard
// table name for env.
func Build(api dynamodbiface.DynamoDBAPI, env, tableName string) *DAO {
	if tableName == "" {
		tableName = TableName(env)
	}
	return New(api, tableName)
}

// TableName returns the DynamoDB table name for the given environment.
func TableName(env string) string {
	return env + "-vox-ws-sessions"
}
