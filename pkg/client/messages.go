package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"textenger/internal/model"
	"textenger/pkg/response"
)

func messagesPath(scope model.Scope) string {
	return "/api/v1/scopes/" + url.PathEscape(scope.Key()) + "/messages"
}

// ListMessages 分页读取历史，结果从新到旧
func (c *Client) ListMessages(ctx context.Context, q model.MessageQuery) ([]*model.Message, error) {
	page, err := c.ListPage(ctx, q)
	if err != nil {
		return nil, err
	}
	return page.Messages, nil
}

// ListPage 同 ListMessages，额外返回服务端给出的游标
func (c *Client) ListPage(ctx context.Context, q model.MessageQuery) (*response.MessagePage, error) {
	if err := q.Scope.Validate(); err != nil {
		return nil, err
	}
	query := url.Values{}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Before != nil {
		query.Set("before", q.Before.Encode())
	}
	if q.After != nil {
		query.Set("after", q.After.Encode())
	}
	var page response.MessagePage
	if err := c.do(ctx, http.MethodGet, messagesPath(q.Scope), query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetMessage 读取单条消息（带作者）
func (c *Client) GetMessage(ctx context.Context, scope model.Scope, id int64) (*model.Message, error) {
	var m model.Message
	if err := c.do(ctx, http.MethodGet, messagesPath(scope)+"/"+strconv.FormatInt(id, 10), nil, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMessage 发送消息，作用域由消息上的引用字段推出
func (c *Client) InsertMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	self, ok := c.CurrentUserID()
	if !ok {
		return nil, errors.New("client: not signed in")
	}
	scope := model.ScopeOf(msg, self)
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	var out model.Message
	err := c.do(ctx, http.MethodPost, messagesPath(scope), nil, map[string]any{
		"content":         msg.Content,
		"attachment_url":  msg.AttachmentURL,
		"attachment_type": msg.AttachmentType,
		"attachment_name": msg.AttachmentName,
		"attachment_size": msg.AttachmentSize,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// EditMessage 编辑自己的消息
func (c *Client) EditMessage(ctx context.Context, scope model.Scope, id int64, content string) (*model.Message, error) {
	var out model.Message
	err := c.do(ctx, http.MethodPatch, messagesPath(scope)+"/"+strconv.FormatInt(id, 10), nil, map[string]string{
		"content": content,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMessage 删除自己的消息
func (c *Client) DeleteMessage(ctx context.Context, scope model.Scope, id int64) error {
	return c.do(ctx, http.MethodDelete, messagesPath(scope)+"/"+strconv.FormatInt(id, 10), nil, nil, nil)
}
