package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient Client接口的mock实现，用法与mockery生成的mock一致
type MockClient struct {
	mock.Mock
}

// MockClient_Expecter 期望设置辅助类型
type MockClient_Expecter struct {
	mock *mock.Mock
}

// EXPECT 返回期望设置器
func (_m *MockClient) EXPECT() *MockClient_Expecter {
	return &MockClient_Expecter{mock: &_m.Mock}
}

// Complete 实现Client接口
func (_m *MockClient) Complete(ctx context.Context, req *CompletionRequest) (*Response, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for Complete")
	}

	if rf, ok := ret.Get(0).(func(context.Context, *CompletionRequest) (*Response, error)); ok {
		return rf(ctx, req)
	}

	var r0 *Response
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Response)
	}
	return r0, ret.Error(1)
}

// MockClient_Complete_Call Complete调用的期望
type MockClient_Complete_Call struct {
	*mock.Call
}

// Complete 设置Complete调用期望
func (_e *MockClient_Expecter) Complete(ctx interface{}, req interface{}) *MockClient_Complete_Call {
	return &MockClient_Complete_Call{Call: _e.mock.On("Complete", ctx, req)}
}

// Run 在调用时执行回调
func (_c *MockClient_Complete_Call) Run(run func(ctx context.Context, req *CompletionRequest)) *MockClient_Complete_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(*CompletionRequest))
	})
	return _c
}

// Return 设置返回值
func (_c *MockClient_Complete_Call) Return(resp *Response, err error) *MockClient_Complete_Call {
	_c.Call.Return(resp, err)
	return _c
}

// RunAndReturn 使用函数计算返回值
func (_c *MockClient_Complete_Call) RunAndReturn(run func(context.Context, *CompletionRequest) (*Response, error)) *MockClient_Complete_Call {
	_c.Call.Return(run)
	return _c
}

// Name 实现Client接口
func (_m *MockClient) Name() string {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Name")
	}

	if rf, ok := ret.Get(0).(func() string); ok {
		return rf()
	}
	return ret.String(0)
}

// MockClient_Name_Call Name调用的期望
type MockClient_Name_Call struct {
	*mock.Call
}

// Name 设置Name调用期望
func (_e *MockClient_Expecter) Name() *MockClient_Name_Call {
	return &MockClient_Name_Call{Call: _e.mock.On("Name")}
}

// Return 设置返回值
func (_c *MockClient_Name_Call) Return(name string) *MockClient_Name_Call {
	_c.Call.Return(name)
	return _c
}

// NewMockClient 创建mock客户端并在测试结束时校验期望
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
