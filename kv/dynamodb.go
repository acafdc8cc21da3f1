package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI is the subset of the DynamoDB client used by DynamoDB.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// MaxTransactItems is DynamoDB's limit on actions per TransactWriteItems call.
const MaxTransactItems = 100

// ErrTooManyItems is returned when an atomic write exceeds MaxTransactItems.
var ErrTooManyItems = errors.New("kv: too many items for one dynamodb transaction")

// Attribute names.
const (
	ddbPartitionKey = "ns"
	ddbSortKey      = "k"
	ddbValue        = "v"
)

// DynamoDB is a Store backed by a DynamoDB table.
//
// The first key segment is the partition key; the full encoded key is the
// sort key, so listing a namespace is a single Query.
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name entitydb \
//	  --attribute-definitions AttributeName=ns,AttributeType=S AttributeName=k,AttributeType=S \
//	  --key-schema AttributeName=ns,KeyType=HASH AttributeName=k,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DynamoDB struct {
	client DynamoDBAPI
	table  string
	opts   *Options
}

// NewDynamoDB creates a DynamoDB-backed Store using the given client.
func NewDynamoDB(client DynamoDBAPI, table string, opts *Options) *DynamoDB {
	return &DynamoDB{client: client, table: table, opts: opts}
}

// NewDynamoDBFromConfig loads the default AWS configuration (environment,
// shared config, IMDS) and returns a Store for table.
func NewDynamoDBFromConfig(ctx context.Context, table string, optFns ...func(*config.LoadOptions) error) (*DynamoDB, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("kv: load aws config: %w", err)
	}
	return NewDynamoDB(dynamodb.NewFromConfig(cfg), table, nil), nil
}

func (d *DynamoDB) itemKey(key Key) map[string]types.AttributeValue {
	ns := ""
	if len(key) > 0 {
		ns = key[0]
	}
	return map[string]types.AttributeValue{
		ddbPartitionKey: &types.AttributeValueMemberS{Value: ns},
		ddbSortKey:      &types.AttributeValueMemberS{Value: string(d.opts.encode(key))},
	}
}

func (d *DynamoDB) item(e Entry) map[string]types.AttributeValue {
	item := d.itemKey(e.Key)
	v := e.Value
	if v == nil {
		v = []byte{}
	}
	item[ddbValue] = &types.AttributeValueMemberB{Value: v}
	return item
}

func (d *DynamoDB) Get(ctx context.Context, key Key) ([]byte, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	return attrBytes(out.Item)
}

func attrBytes(item map[string]types.AttributeValue) ([]byte, error) {
	b, ok := item[ddbValue].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("kv: dynamodb item has no binary %q attribute", ddbValue)
	}
	return b.Value, nil
}

func (d *DynamoDB) Set(ctx context.Context, key Key, value []byte) error {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      d.item(Entry{Key: key, Value: value}),
	})
	return err
}

func (d *DynamoDB) Delete(ctx context.Context, key Key) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       d.itemKey(key),
	})
	return err
}

// List queries the partition of prefix[0] with begins_with on the sort key.
// An empty prefix falls back to a full table Scan, sorted client side.
func (d *DynamoDB) List(ctx context.Context, prefix Key) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		var (
			entries []Entry
			err     error
		)
		if len(prefix) == 0 {
			entries, err = d.scanAll(ctx)
		} else {
			entries, err = d.query(ctx, prefix)
		}
		if err != nil {
			yield(Entry{}, err)
			return
		}
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (d *DynamoDB) query(ctx context.Context, prefix Key) ([]Entry, error) {
	p := d.opts.prefixBytes(prefix)
	paginator := dynamodb.NewQueryPaginator(d.client, &dynamodb.QueryInput{
		TableName:              aws.String(d.table),
		KeyConditionExpression: aws.String("#ns = :ns AND begins_with(#k, :p)"),
		ExpressionAttributeNames: map[string]string{
			"#ns": ddbPartitionKey,
			"#k":  ddbSortKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ns": &types.AttributeValueMemberS{Value: prefix[0]},
			":p":  &types.AttributeValueMemberS{Value: string(p)},
		},
		ConsistentRead: aws.Bool(true),
	})

	var out []Entry
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			e, err := d.entry(item)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *DynamoDB) scanAll(ctx context.Context) ([]Entry, error) {
	paginator := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName:      aws.String(d.table),
		ConsistentRead: aws.Bool(true),
	})

	var out []Entry
	var raw [][]byte
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			e, err := d.entry(item)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
			raw = append(raw, d.opts.encode(e.Key))
		}
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	slices.SortFunc(idx, func(a, b int) int { return bytes.Compare(raw[a], raw[b]) })
	sorted := make([]Entry, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted, nil
}

func (d *DynamoDB) entry(item map[string]types.AttributeValue) (Entry, error) {
	k, ok := item[ddbSortKey].(*types.AttributeValueMemberS)
	if !ok {
		return Entry{}, fmt.Errorf("kv: dynamodb item has no string %q attribute", ddbSortKey)
	}
	v, err := attrBytes(item)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Key: d.opts.decode([]byte(k.Value)), Value: v}, nil
}

func (d *DynamoDB) BatchSet(ctx context.Context, entries []Entry) error {
	return d.Apply(ctx, entries, nil)
}

func (d *DynamoDB) BatchDelete(ctx context.Context, keys []Key) error {
	return d.Apply(ctx, nil, keys)
}

// Apply issues one TransactWriteItems call. DynamoDB rejects transactions
// with more than MaxTransactItems actions or two actions on the same item.
func (d *DynamoDB) Apply(ctx context.Context, sets []Entry, deletes []Key) error {
	n := len(sets) + len(deletes)
	if n == 0 {
		return nil
	}
	if n > MaxTransactItems {
		return fmt.Errorf("%w: %d > %d", ErrTooManyItems, n, MaxTransactItems)
	}

	items := make([]types.TransactWriteItem, 0, n)
	for _, key := range deletes {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(d.table),
				Key:       d.itemKey(key),
			},
		})
	}
	for _, e := range sets {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(d.table),
				Item:      d.item(e),
			},
		})
	}

	_, err := d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return err
}

// Close is a no-op; the client is owned by the caller.
func (d *DynamoDB) Close() error {
	return nil
}
