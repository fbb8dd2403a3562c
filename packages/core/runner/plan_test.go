package runner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/srt/packages/core/deps"
)

func TestBuildPlan_PrerequisiteFirst(t *testing.T) {
	profile := doc(t, "profile", `{"testname": "profile", "options": {"path": "/users/${login}.token"}, "status": 200}`)
	login := doc(t, "login", `{"testname": "login", "options": {"path": "/login", "method": "POST"}, "status": 200, "saveResponse": true}`)

	plan, err := BuildPlan(collection(profile, login), PlanOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"login", "profile"}, plan.Names())
	assert.Equal(t, []string{"login"}, plan.Steps[1].Requires)
	assert.Empty(t, plan.Blocked)
}

func TestBuildPlan_Cycle(t *testing.T) {
	a := doc(t, "a", `{"testname": "a", "options": {"path": "/${b}.id"}, "status": 200}`)
	b := doc(t, "b", `{"testname": "b", "options": {"path": "/${c}.id"}, "status": 200}`)
	c := doc(t, "c", `{"testname": "c", "options": {"path": "/"}, "status": 200, "prerequisites": ["a"]}`)

	plan, err := BuildPlan(collection(a, b, c), PlanOptions{})
	require.Error(t, err)
	assert.Nil(t, plan)

	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, "a", cycle.Entry)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycle.Path)
	assert.Contains(t, err.Error(), `starting in test "a"`)
}

func TestBuildPlan_TwoNodeCycle(t *testing.T) {
	a := doc(t, "a", `{"testname": "a", "options": {"path": "/"}, "status": 200, "prerequisites": ["b"]}`)
	b := doc(t, "b", `{"testname": "b", "options": {"path": "/${a}.id"}, "status": 200}`)

	_, err := BuildPlan(collection(a, b), PlanOptions{})
	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, "a", cycle.Entry)
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Path)
}

func TestBuildPlan_SelfReference(t *testing.T) {
	t.Run("own fields are not a dependency", func(t *testing.T) {
		a := doc(t, "a", `{"testname": "a", "options": {"path": "/${a}.id"}, "status": 200}`)

		plan, err := BuildPlan(collection(a), PlanOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, plan.Names())
	})

	t.Run("explicit self prerequisite is a cycle", func(t *testing.T) {
		a := doc(t, "a", `{"testname": "a", "options": {"path": "/"}, "status": 200, "prerequisites": ["a"]}`)

		plan, err := BuildPlan(collection(a), PlanOptions{})
		assert.Nil(t, plan)
		var cycle *CycleError
		require.True(t, errors.As(err, &cycle))
		assert.Equal(t, "a", cycle.Entry)
		assert.Equal(t, []string{"a", "a"}, cycle.Path)
	})
}

func TestBuildPlan_DefinedMacrosAreNotPrerequisites(t *testing.T) {
	defined := func(name string) bool { return name == "tag" || name == "login" }
	report := doc(t, "report", `{"testname": "report", "options": {"path": "/files/${tag}.json", "headers": {"Authorization": "Bearer ${login}.token"}}, "status": 200}`)
	login := doc(t, "login", `{"testname": "login", "options": {"path": "/login", "method": "POST"}, "status": 200}`)

	plan, err := BuildPlan(collection(report, login), PlanOptions{Macros: defined})
	require.NoError(t, err)
	assert.Empty(t, plan.Blocked)
	assert.Equal(t, []string{"login", "report"}, plan.Names())
	assert.Equal(t, []string{"login"}, plan.Steps[1].Requires)

	plan, err = BuildPlan(collection(report), PlanOptions{})
	require.NoError(t, err)
	require.Len(t, plan.Blocked, 1)
	assert.True(t, errors.Is(plan.Blocked[0].Err, deps.ErrUnknownPrerequisite))
}

func TestBuildPlan_DestructiveDeferral(t *testing.T) {
	tests := []struct {
		name        string
		destructive []string
		want        []string
		deferred    []string
	}{
		{
			name:     "deletes run last in discovery order",
			want:     []string{"list", "create", "show", "drop", "purge"},
			deferred: []string{"drop", "purge"},
		},
		{
			name:        "configured methods",
			destructive: []string{"POST", "DELETE"},
			want:        []string{"list", "show", "drop", "create", "purge"},
			deferred:    []string{"drop", "create", "purge"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drop := doc(t, "drop", `{"testname": "drop", "options": {"path": "/a", "method": "DELETE"}, "status": 204}`)
			list := doc(t, "list", `{"testname": "list", "options": {"path": "/a"}, "status": 200}`)
			create := doc(t, "create", `{"testname": "create", "options": {"path": "/a", "method": "POST"}, "status": 201}`)
			purge := doc(t, "purge", `{"testname": "purge", "options": {"path": "/b", "method": "delete"}, "status": 204}`)
			show := doc(t, "show", `{"testname": "show", "options": {"path": "/a/1"}, "status": 200}`)

			plan, err := BuildPlan(collection(drop, list, create, purge, show), PlanOptions{DestructiveMethods: tt.destructive})
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan.Names())

			var deferred []string
			for _, s := range plan.Steps {
				if s.Deferred {
					deferred = append(deferred, s.Doc.Name())
				}
			}
			assert.Equal(t, tt.deferred, deferred)
		})
	}
}

func TestBuildPlan_DestructivePulledForward(t *testing.T) {
	reset := doc(t, "reset", `{"testname": "reset", "options": {"path": "/all", "method": "DELETE"}, "status": 204, "saveResponse": true}`)
	seed := doc(t, "seed", `{"testname": "seed", "options": {"path": "/seed", "method": "POST"}, "status": 201, "prerequisites": ["reset"]}`)

	plan, err := BuildPlan(collection(reset, seed), PlanOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"reset", "seed"}, plan.Names())
	assert.False(t, plan.Steps[0].Deferred)
}

func TestBuildPlan_UnknownPrerequisite(t *testing.T) {
	orphan := doc(t, "orphan", `{"testname": "orphan", "options": {"path": "/x/${ghost}.id"}, "status": 200}`)
	child := doc(t, "child", `{"testname": "child", "options": {"path": "/y/${orphan}.id"}, "status": 200}`)
	free := doc(t, "free", `{"testname": "free", "options": {"path": "/z"}, "status": 200}`)

	plan, err := BuildPlan(collection(orphan, child, free), PlanOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"free"}, plan.Names())
	require.Len(t, plan.Blocked, 2)

	assert.Equal(t, "orphan", plan.Blocked[0].Doc.Name())
	assert.True(t, errors.Is(plan.Blocked[0].Err, deps.ErrUnknownPrerequisite))
	assert.Contains(t, plan.Blocked[0].Err.Error(), "ghost")

	assert.Equal(t, "child", plan.Blocked[1].Doc.Name())
	assert.True(t, errors.Is(plan.Blocked[1].Err, deps.ErrUnknownPrerequisite))
	assert.Contains(t, plan.Blocked[1].Err.Error(), `prerequisite "orphan" cannot run`)
}

func TestBuildPlan_NameFilter(t *testing.T) {
	login := doc(t, "login", `{"testname": "login", "options": {"path": "/login"}, "status": 200}`)
	userGet := doc(t, "user_get", `{"testname": "user_get", "options": {"path": "/u/${login}.id"}, "status": 200}`)
	orderGet := doc(t, "order_get", `{"testname": "order_get", "options": {"path": "/o"}, "status": 200}`)

	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"login", "user_get", "order_get"}},
		{"user_*", []string{"login", "user_get"}},
		{"*_get", []string{"login", "user_get", "order_get"}},
		{"*der*", []string{"order_get"}},
		{"login", []string{"login"}},
		{"nothing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			plan, err := BuildPlan(collection(login, userGet, orderGet), PlanOptions{NameFilter: tt.filter})
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, plan.Names())
				return
			}
			assert.Equal(t, tt.want, plan.Names())
		})
	}
}
