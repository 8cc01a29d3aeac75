// Package device provides embedded WGSL compute shaders for tensor kernels.
package device

// WGSL compute shaders for tensor kernels.
// Using string constants instead of embed for simplicity.

// workgroupSize is the default number of threads per workgroup.
const workgroupSize = 256

// MaxRank is the highest tensor rank the kernels address. Uniform structs
// carry one u32 stride slot per dimension, so raising this means touching
// every broadcast shader.
const MaxRank = 6

// Broadcast binary kernels walk the flat output index back through the
// output strides (divide, remainder) and rebuild one offset per input from
// the inputs' effective strides. A broadcast input carries stride 0 in the
// widened dimension, so the same element is read for every output position
// along it. Strides are individual u32 fields because arrays in uniform
// address space pad each element to 16 bytes.

// addShader performs broadcast addition: result[i] = a[ai] + b[bi].
const addShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    rank: u32,
    size: u32,
    out_s0: u32, out_s1: u32, out_s2: u32, out_s3: u32, out_s4: u32, out_s5: u32,
    a_s0: u32, a_s1: u32, a_s2: u32, a_s3: u32, a_s4: u32, a_s5: u32,
    b_s0: u32, b_s1: u32, b_s2: u32, b_s3: u32, b_s4: u32, b_s5: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    var out_s = array<u32, 6>(params.out_s0, params.out_s1, params.out_s2, params.out_s3, params.out_s4, params.out_s5);
    var a_s = array<u32, 6>(params.a_s0, params.a_s1, params.a_s2, params.a_s3, params.a_s4, params.a_s5);
    var b_s = array<u32, 6>(params.b_s0, params.b_s1, params.b_s2, params.b_s3, params.b_s4, params.b_s5);
    var rem = idx;
    var a_idx = 0u;
    var b_idx = 0u;
    for (var d = 0u; d < params.rank; d = d + 1u) {
        let pos = rem / out_s[d];
        rem = rem - pos * out_s[d];
        a_idx = a_idx + pos * a_s[d];
        b_idx = b_idx + pos * b_s[d];
    }
    result[idx] = a[a_idx] + b[b_idx];
}
`

// subShader performs broadcast subtraction: result[i] = a[ai] - b[bi].
const subShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    rank: u32,
    size: u32,
    out_s0: u32, out_s1: u32, out_s2: u32, out_s3: u32, out_s4: u32, out_s5: u32,
    a_s0: u32, a_s1: u32, a_s2: u32, a_s3: u32, a_s4: u32, a_s5: u32,
    b_s0: u32, b_s1: u32, b_s2: u32, b_s3: u32, b_s4: u32, b_s5: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    var out_s = array<u32, 6>(params.out_s0, params.out_s1, params.out_s2, params.out_s3, params.out_s4, params.out_s5);
    var a_s = array<u32, 6>(params.a_s0, params.a_s1, params.a_s2, params.a_s3, params.a_s4, params.a_s5);
    var b_s = array<u32, 6>(params.b_s0, params.b_s1, params.b_s2, params.b_s3, params.b_s4, params.b_s5);
    var rem = idx;
    var a_idx = 0u;
    var b_idx = 0u;
    for (var d = 0u; d < params.rank; d = d + 1u) {
        let pos = rem / out_s[d];
        rem = rem - pos * out_s[d];
        a_idx = a_idx + pos * a_s[d];
        b_idx = b_idx + pos * b_s[d];
    }
    result[idx] = a[a_idx] - b[b_idx];
}
`

// mulShader performs broadcast multiplication: result[i] = a[ai] * b[bi].
const mulShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    rank: u32,
    size: u32,
    out_s0: u32, out_s1: u32, out_s2: u32, out_s3: u32, out_s4: u32, out_s5: u32,
    a_s0: u32, a_s1: u32, a_s2: u32, a_s3: u32, a_s4: u32, a_s5: u32,
    b_s0: u32, b_s1: u32, b_s2: u32, b_s3: u32, b_s4: u32, b_s5: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    var out_s = array<u32, 6>(params.out_s0, params.out_s1, params.out_s2, params.out_s3, params.out_s4, params.out_s5);
    var a_s = array<u32, 6>(params.a_s0, params.a_s1, params.a_s2, params.a_s3, params.a_s4, params.a_s5);
    var b_s = array<u32, 6>(params.b_s0, params.b_s1, params.b_s2, params.b_s3, params.b_s4, params.b_s5);
    var rem = idx;
    var a_idx = 0u;
    var b_idx = 0u;
    for (var d = 0u; d < params.rank; d = d + 1u) {
        let pos = rem / out_s[d];
        rem = rem - pos * out_s[d];
        a_idx = a_idx + pos * a_s[d];
        b_idx = b_idx + pos * b_s[d];
    }
    result[idx] = a[a_idx] * b[b_idx];
}
`

// divShader performs broadcast division: result[i] = a[ai] / b[bi].
// Division by zero follows IEEE 754 (inf/NaN), no guard.
const divShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    rank: u32,
    size: u32,
    out_s0: u32, out_s1: u32, out_s2: u32, out_s3: u32, out_s4: u32, out_s5: u32,
    a_s0: u32, a_s1: u32, a_s2: u32, a_s3: u32, a_s4: u32, a_s5: u32,
    b_s0: u32, b_s1: u32, b_s2: u32, b_s3: u32, b_s4: u32, b_s5: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    var out_s = array<u32, 6>(params.out_s0, params.out_s1, params.out_s2, params.out_s3, params.out_s4, params.out_s5);
    var a_s = array<u32, 6>(params.a_s0, params.a_s1, params.a_s2, params.a_s3, params.a_s4, params.a_s5);
    var b_s = array<u32, 6>(params.b_s0, params.b_s1, params.b_s2, params.b_s3, params.b_s4, params.b_s5);
    var rem = idx;
    var a_idx = 0u;
    var b_idx = 0u;
    for (var d = 0u; d < params.rank; d = d + 1u) {
        let pos = rem / out_s[d];
        rem = rem - pos * out_s[d];
        a_idx = a_idx + pos * a_s[d];
        b_idx = b_idx + pos * b_s[d];
    }
    result[idx] = a[a_idx] / b[b_idx];
}
`

// negShader negates every element: result[i] = -input[i].
const negShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = -input[idx];
    }
}
`

// reluShader applies ReLU: result[i] = max(0, input[i]).
const reluShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = max(0.0, input[idx]);
    }
}
`

// reluGradShader computes the ReLU derivative: 1 where input > 0, else 0.
const reluGradShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = select(0.0, 1.0, input[idx] > 0.0);
    }
}
`

// sumShader reduces the whole input to result[0] in a single invocation.
// Serial on purpose: deterministic accumulation order, and the sums this
// engine takes (losses) are small enough that a tree reduction isn't worth
// the extra passes yet.
const sumShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(1)
fn main() {
    var total: f32 = 0.0;
    for (var i = 0u; i < params.size; i = i + 1u) {
        total = total + input[i];
    }
    result[0] = total;
}
`

// matmulShader performs batched matrix multiplication over strided inputs.
// One thread per output cell: x is the column, y the row, z the batch.
// Row/column strides are passed per input, so a transposed view multiplies
// without materializing: its strides are simply swapped.
const matmulShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    height: u32,
    width: u32,
    shared_dim: u32,
    batch: u32,
    a_row_stride: u32,
    a_col_stride: u32,
    b_row_stride: u32,
    b_col_stride: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let col = global_id.x;
    let row = global_id.y;
    let batch = global_id.z;
    if (row >= params.height || col >= params.width || batch >= params.batch) {
        return;
    }
    let a_start = batch * params.height * params.shared_dim + row * params.a_row_stride;
    let b_start = batch * params.shared_dim * params.width + col * params.b_col_stride;
    var acc: f32 = 0.0;
    for (var i = 0u; i < params.shared_dim; i = i + 1u) {
        acc = acc + a[a_start + i * params.a_col_stride] * b[b_start + i * params.b_row_stride];
    }
    result[batch * params.height * params.width + row * params.width + col] = acc;
}
`
